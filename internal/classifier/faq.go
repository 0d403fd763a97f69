package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one FAQ answer and the keywords that trigger it.
type Entry struct {
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

type faqFile struct {
	Topics  []string `yaml:"topics"`
	Entries []Entry  `yaml:"entries"`
}

// FAQ is a keyword matcher over canned answers.
type FAQ struct {
	topics  []string
	entries []Entry
}

var defaultFAQ = faqFile{
	Topics: []string{"deliver", "parcel", "package", "order", "cargo", "ship", "track", "address", "refund", "return", "customs", "price", "tariff", "warehouse"},
	Entries: []Entry{
		{
			Keywords: []string{"track", "where is my"},
			Answer:   "📦 To track an order, send us its tracking number or open the tracking page in your personal account.",
		},
		{
			Keywords: []string{"delivery time", "how long", "how many days"},
			Answer:   "🚚 Delivery usually takes 10 to 18 days from the moment the parcel arrives at our warehouse.",
		},
		{
			Keywords: []string{"refund", "return"},
			Answer:   "↩️ Refunds are processed within 14 days. Describe the problem and attach photos of the parcel, and we will start the claim.",
		},
		{
			Keywords: []string{"warehouse address", "check address"},
			Answer:   "✅ Your warehouse address is shown in your personal account. Always include your client code in the recipient line.",
		},
	},
}

// DefaultFAQ returns the built-in FAQ.
func DefaultFAQ() *FAQ {
	return newFAQ(defaultFAQ)
}

// LoadFAQ reads a YAML FAQ file. An empty path returns the built-in FAQ.
func LoadFAQ(path string) (*FAQ, error) {
	if path == "" {
		return DefaultFAQ(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read faq: %w", err)
	}
	var f faqFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse faq %s: %w", path, err)
	}
	if len(f.Entries) == 0 {
		return nil, fmt.Errorf("faq %s has no entries", path)
	}
	return newFAQ(f), nil
}

func newFAQ(f faqFile) *FAQ {
	out := &FAQ{}
	for _, t := range f.Topics {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out.topics = append(out.topics, t)
		}
	}
	for _, e := range f.Entries {
		var kws []string
		for _, k := range e.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		if len(kws) > 0 && e.Answer != "" {
			out.entries = append(out.entries, Entry{Keywords: kws, Answer: e.Answer})
		}
	}
	return out
}

// Match returns the first answer whose keyword occurs in message.
func (f *FAQ) Match(message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, e := range f.entries {
		for _, k := range e.Keywords {
			if strings.Contains(lower, k) {
				return e.Answer, true
			}
		}
	}
	return "", false
}

// Topics lists the lower-cased words that mark a message as on-topic.
func (f *FAQ) Topics() []string {
	return f.topics
}
