package verses

import (
	"math/rand/v2"
	"time"
)

// DefaultLanguage is used for languages the catalogue does not cover
const DefaultLanguage = "fr"

// Verse is one entry of the catalogue in a given language
type Verse struct {
	Text      string `json:"text"`
	Reference string `json:"reference"`
	Language  string `json:"language"`
}

type entry struct {
	texts     map[string]string
	reference string
}

var catalogue = []entry{
	{
		reference: "Jérémie 29:11",
		texts: map[string]string{
			"fr": "Car je connais les projets que j'ai formés sur vous, dit l'Éternel, projets de paix et non de malheur, afin de vous donner un avenir et de l'espérance.",
			"en": `"For I know the plans I have for you," declares the LORD, "plans to prosper you and not to harm you, plans to give you hope and a future."`,
			"es": `"Porque yo sé los pensamientos que tengo acerca de vosotros, dice Jehová, pensamientos de paz, y no de mal, para daros el fin que esperáis."`,
			"pt": `"Porque sou eu que conheço os planos que tenho para vocês", diz o Senhor, "planos de fazê-los prosperar e não de lhes causar dano, planos de dar-lhes esperança e um futuro."`,
			"sw": `"Maana nayajua mawazo ninayowawazia ninyi, asema BWANA, ni mawazo ya amani wala si ya mabaya, kuwapa ninyi tumaini siku zenu za mwisho."`,
		},
	},
	{
		reference: "Psaume 23:1",
		texts: map[string]string{
			"fr": "L'Éternel est mon berger: je ne manquerai de rien.",
			"en": "The LORD is my shepherd; I shall not want.",
			"es": "Jehová es mi pastor; nada me faltará.",
			"pt": "O Senhor é o meu pastor; de nada terei falta.",
			"sw": "BWANA ndiye mchungaji wangu, Sitapungukiwa na kitu.",
		},
	},
	{
		reference: "Philippiens 4:13",
		texts: map[string]string{
			"fr": "Je puis tout par celui qui me fortifie.",
			"en": "I can do all things through Christ who strengthens me.",
			"es": "Todo lo puedo en Cristo que me fortalece.",
			"pt": "Tudo posso naquele que me fortalece.",
			"sw": "Nayaweza mambo yote katika yeye anitiaye nguvu.",
		},
	},
	{
		reference: "Proverbes 3:5",
		texts: map[string]string{
			"fr": "Confie-toi en l'Éternel de tout ton cœur, et ne t'appuie pas sur ta sagesse.",
			"en": "Trust in the LORD with all your heart and lean not on your own understanding.",
			"es": "Fíate de Jehová de todo tu corazón, y no te apoyes en tu propia prudencia.",
			"pt": "Confie no Senhor de todo o seu coração e não se apoie em seu próprio entendimento.",
			"sw": "Mtumaini BWANA kwa moyo wako wote, Wala usizitegemee akili zako mwenyewe.",
		},
	},
	{
		reference: "Jean 3:16",
		texts: map[string]string{
			"fr": "Car Dieu a tant aimé le monde qu'il a donné son Fils unique, afin que quiconque croit en lui ne périsse point, mais qu'il ait la vie éternelle.",
			"en": "For God so loved the world that he gave his one and only Son, that whoever believes in him shall not perish but have eternal life.",
			"es": "Porque de tal manera amó Dios al mundo, que ha dado a su Hijo unigénito, para que todo aquel que en él cree, no se pierda, mas tenga vida eterna.",
			"pt": "Porque Deus amou o mundo de tal maneira que deu o seu Filho unigênito, para que todo aquele que nele crê não pereça, mas tenha a vida eterna.",
			"sw": "Kwa maana jinsi hii Mungu aliupenda ulimwengu, hata akamtoa Mwanawe pekee, ili kila mtu amwaminiye asipotee, bali awe na uzima wa milele.",
		},
	},
}

// Len returns the number of verses in the catalogue
func Len() int {
	return len(catalogue)
}

// Supported reports whether the catalogue has texts in lang
func Supported(lang string) bool {
	_, ok := catalogue[0].texts[lang]
	return ok
}

// Today returns the verse for the calendar day of date. Every caller sees
// the same verse on the same day.
func Today(date time.Time, lang string) Verse {
	y, m, d := date.Date()
	days := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
	idx := int(days % int64(len(catalogue)))
	if idx < 0 {
		idx += len(catalogue)
	}
	return At(idx, lang)
}

// Random returns a verse picked at random
func Random(lang string) Verse {
	return At(rand.IntN(len(catalogue)), lang)
}

// At returns the verse at index i, modulo the catalogue size
func At(i int, lang string) Verse {
	e := catalogue[((i%len(catalogue))+len(catalogue))%len(catalogue)]
	if !Supported(lang) {
		lang = DefaultLanguage
	}
	return Verse{Text: e.texts[lang], Reference: e.reference, Language: lang}
}
