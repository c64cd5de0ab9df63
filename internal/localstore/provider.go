// Package localstore defines the client's local key-string persistence.
package localstore

// Store is the interface for local key-string persistence.
type Store interface {
	// Get returns the value stored under key and whether it was present.
	Get(key string) (string, bool, error)
	// Set stores value under key.
	Set(key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// Keys used by ideashare components.
const (
	KeyIdentity         = "ideashare_userId"
	KeySubmissionPrefix = "ideashare_dailySubmission_"
	KeyLanguage         = "ideashare_language"
	KeyTheme            = "ideashare_theme"
	KeyCountry          = "ideashare_userCountry"
	KeyCountryTime      = "ideashare_userCountryTime"
)

// SubmissionKey returns the submission record key for an identifier.
func SubmissionKey(identity string) string {
	return KeySubmissionPrefix + identity
}
