package cumulus

// Profile is the record returned by the identity endpoint. The host may
// attach more fields than listed here; unknown fields are ignored.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Locale    string `json:"locale,omitempty"`
}
