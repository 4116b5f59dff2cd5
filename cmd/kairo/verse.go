package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Micheline922/kairo/internal/verses"
)

var (
	verseLang   string
	verseDate   string
	verseRandom bool
)

var verseCmd = &cobra.Command{
	Use:   "verse",
	Short: "Print the verse of the day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verses.Supported(verseLang) {
			return fmt.Errorf("unsupported language %q", verseLang)
		}

		var v verses.Verse
		if verseRandom {
			v = verses.Random(verseLang)
		} else {
			date := time.Now()
			if verseDate != "" {
				d, err := time.Parse(time.DateOnly, verseDate)
				if err != nil {
					return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
				}
				date = d
			}
			v = verses.Today(date, verseLang)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s\n  %s\n", v.Text, v.Reference)
		return nil
	},
}

func init() {
	verseCmd.Flags().StringVarP(&verseLang, "lang", "l", verses.DefaultLanguage, "Language: fr, en, es, pt or sw")
	verseCmd.Flags().StringVarP(&verseDate, "date", "d", "", "Day to pick the verse for (YYYY-MM-DD), default today")
	verseCmd.Flags().BoolVar(&verseRandom, "random", false, "Pick a random verse")
}
