// Package devotion holds the records a user keeps in Kairo: journal
// entries, pearls of wisdom, prayer requests and plans, academy insights,
// divine guidances, saved articles and fasts.
//
// Each kind of record lives in its own Collection on a store.Backend.
// Service ties the collections together and adds the operations that
// touch more than a single write, such as answering a prayer or asking the
// AI flows to analyze a journal entry.
package devotion
