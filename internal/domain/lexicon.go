package domain

// Collection NSIDs. standard.site is used for long-form posts, space.myspace
// for everything MySpace-shaped.
const (
	CollectionPublication = "site.standard.publication"
	CollectionDocument    = "site.standard.document"

	CollectionProfile    = "space.myspace.profile"
	CollectionTopFriends = "space.myspace.topFriends"
	CollectionComment    = "space.myspace.comment"
	CollectionBulletin   = "space.myspace.bulletin"
	CollectionPhotoAlbum = "space.myspace.photoAlbum"
	CollectionPhoto      = "space.myspace.photo"
)

const (
	ContentTypeMarkdown = "site.standard.content.markdown"
	ContentTypeHTML     = "site.standard.content.html"
	ThemeColorRGBType   = "site.standard.theme.color#rgb"
	BlobType            = "blob"
)

// SelfKey is the record key of singleton records.
const SelfKey = "self"

// TomDID is tom.bsky.social, everyone's first friend.
const TomDID = "did:plc:z72i7hdynmk6r22z27h6tvur"

// DefaultSiteURL is the public base URL used for publication links.
const DefaultSiteURL = "https://mysky.wtf"

// MaxTopFriends caps the top friends list on save.
const MaxTopFriends = 8

// Moods is the classic MySpace mood vocabulary.
var Moods = []string{
	"accomplished", "aggravated", "amused", "angry", "annoyed", "anxious",
	"apathetic", "artistic", "awake", "bitchy", "blah", "blank", "bored",
	"bouncy", "busy", "calm", "cheerful", "chipper", "cold", "complacent",
	"confused", "contemplative", "content", "cranky", "crappy", "crazy",
	"creative", "crushed", "curious", "cynical", "depressed", "determined",
	"devious", "dirty", "disappointed", "discontent", "distressed", "dorky",
	"drained", "drunk", "ecstatic", "embarrassed", "energetic", "enraged",
	"enthralled", "envious", "exanimate", "excited", "exhausted", "flirty",
	"frustrated", "full", "geeky", "giddy", "giggly", "gloomy", "good",
	"grateful", "groggy", "grumpy", "guilty", "happy", "high", "hopeful",
	"horny", "hot", "hungry", "hyper", "impressed", "indescribable",
	"indifferent", "infuriated", "intimidated", "irate", "irritated",
	"jealous", "jubilant", "lazy", "lethargic", "listless", "lonely", "loved",
	"melancholy", "mellow", "mischievous", "moody", "morose", "naughty",
	"nauseated", "nerdy", "nervous", "nostalgic", "numb", "okay", "optimistic",
	"peaceful", "pensive", "pessimistic", "pissed off", "pleased", "predatory",
	"productive", "quixotic", "recumbent", "refreshed", "rejected",
	"rejuvenated", "relaxed", "relieved", "restless", "rushed", "sad",
	"satisfied", "scared", "shocked", "sick", "silly", "sleepy", "sore",
	"stressed", "surprised", "sympathetic", "thankful", "thirsty",
	"thoughtful", "tired", "touched", "uncomfortable", "weird", "working",
	"worried",
}

var moodSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Moods))
	for _, mood := range Moods {
		m[mood] = struct{}{}
	}
	return m
}()

// IsMood reports whether mood is in the mood vocabulary.
func IsMood(mood string) bool {
	_, ok := moodSet[mood]
	return ok
}
