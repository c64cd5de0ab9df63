package moderation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultRemoteURL is the PurgoMalum profanity endpoint.
const DefaultRemoteURL = "https://www.purgomalum.com/service/containsprofanity"

var bannedWords = []string{
	// Spanish
	"idiota", "estúpido", "tonto", "boludo", "pelotudo", "puto", "puta",
	"hijo de puta", "cabrón", "pendejo", "imbécil", "gilipollas", "capullo",
	"coño", "joder", "mierda", "carajo", "pinche",
	// slurs
	"maricón", "faggot", "retrasado", "mongolito",
	// English
	"stupid", "idiot", "moron", "retard", "fuck", "shit", "bitch", "asshole",
	"damn", "hell",
}

var alternatives = map[string][]string{
	"idiota":    {"persona", "amigo", "compañero"},
	"estúpido":  {"confundido", "equivocado", "poco informado"},
	"tonto":     {"ingenuo", "novato", "principiante"},
	"boludo":    {"amigo", "compañero", "tipo"},
	"pelotudo":  {"amigo", "compañero", "persona"},
	"imbécil":   {"persona", "individuo", "alguien"},
	"puto":      {"tipo", "persona", "individuo"},
	"puta":      {"persona", "mujer", "individuo"},
	"mierda":    {"cosa", "problema", "situación"},
	"carajo":    {"rayos", "cielos", "demonios"},
	"coño":      {"vaya", "rayos", "cielos"},
	"joder":     {"molestar", "fastidiar", "complicar"},
	"retrasado": {"persona especial", "persona con discapacidad"},
	"maricón":   {"persona", "individuo"},
	"stupid":    {"confused", "mistaken", "uninformed"},
	"idiot":     {"person", "individual"},
	"moron":     {"person", "individual"},
	"fuck":      {"darn", "gosh"},
	"shit":      {"stuff", "thing"},
	"bitch":     {"person", "individual"},
	"asshole":   {"person", "individual"},
}

var genericAlternatives = []string{"persona", "individuo", "alguien"}

var wordRe = regexp.MustCompile(`\S+`)

// banned and suggestions are keyed by normalized word.
var (
	banned      = map[string]bool{}
	phrases     []string
	suggestions = map[string][]string{}
)

func init() {
	for _, w := range bannedWords {
		n := normalize(w)
		if strings.Contains(n, " ") {
			phrases = append(phrases, n)
			continue
		}
		banned[n] = true
	}
	for w, alts := range alternatives {
		suggestions[normalize(w)] = alts
	}
}

// normalize lowercases s and strips diacritics so "Imbécil" matches "imbecil".
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// IsBanned reports whether a single word is on the local list.
func IsBanned(word string) bool {
	return banned[normalize(word)]
}

// ContainsLocal checks text against the local list only.
func ContainsLocal(text string) bool {
	for _, w := range strings.Fields(text) {
		if IsBanned(w) {
			return true
		}
	}
	joined := " " + strings.Join(strings.Fields(normalize(text)), " ") + " "
	for _, p := range phrases {
		if strings.Contains(joined, " "+p+" ") {
			return true
		}
	}
	return false
}

// Censor masks every banned word with asterisks of the same length.
func Censor(text string) string {
	return wordRe.ReplaceAllStringFunc(text, func(w string) string {
		if IsBanned(w) {
			return strings.Repeat("*", utf8.RuneCountInString(w))
		}
		return w
	})
}

// Suggestions returns friendlier replacements for a banned word.
func Suggestions(word string) []string {
	if alts, ok := suggestions[normalize(word)]; ok {
		return append([]string(nil), alts...)
	}
	return append([]string(nil), genericAlternatives...)
}

// Checker combines the local list with a remote profanity service.
type Checker struct {
	client    *http.Client
	remoteURL string
	logger    *slog.Logger
}

// NewChecker creates a Checker. An empty remoteURL disables the remote call.
func NewChecker(remoteURL string, client *http.Client, logger *slog.Logger) *Checker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Checker{client: client, remoteURL: remoteURL, logger: logger}
}

// ContainsProfanity checks the local list first, then the remote service.
// A remote failure falls back to the local result.
func (c *Checker) ContainsProfanity(ctx context.Context, text string) bool {
	if ContainsLocal(text) {
		return true
	}
	if c.remoteURL == "" {
		return false
	}
	hit, err := c.remote(ctx, text)
	if err != nil {
		c.logger.Warn("moderation: remote profanity check failed, using local result",
			slog.String("error", err.Error()))
		return false
	}
	return hit
}

func (c *Checker) remote(ctx context.Context, text string) (bool, error) {
	u, err := url.Parse(c.remoteURL)
	if err != nil {
		return false, fmt.Errorf("parse remote url: %w", err)
	}
	q := u.Query()
	q.Set("text", text)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("remote status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(body)) == "true", nil
}
