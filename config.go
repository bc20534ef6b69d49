package security

// Defaults applied by Options.WithDefaults. Lifetimes are in seconds; the
// refresh threshold must stay strictly below the lifetime so tokens are
// reissued before they become unusable.
const (
	DefaultTokenExpiration  = 24 * 60 * 60
	DefaultRefreshThreshold = 30 * 60
	DefaultCookieName       = "access_token"
	DefaultAuthScheme       = "Bearer"
	DefaultAPIKeyHeader     = "apiKey"
	DefaultSigningMethod    = "HS256"
)

// Options is a concrete Config. Zero fields fall back to defaults via
// WithDefaults; only the signing secret has no usable default.
type Options struct {
	SigningKey       string
	SigningMethod    string
	TokenExpiration  int
	RefreshThreshold int
	CookieName       string
	AuthScheme       string
	APIKeyHeader     string
	Issuer           string
	Audience         []string
	StoreName        string
	Users            []StoredUser
}

// WithDefaults fills unset fields and returns the receiver for chaining.
func (o *Options) WithDefaults() *Options {
	if o.SigningMethod == "" {
		o.SigningMethod = DefaultSigningMethod
	}
	if o.TokenExpiration <= 0 {
		o.TokenExpiration = DefaultTokenExpiration
	}
	if o.RefreshThreshold <= 0 {
		o.RefreshThreshold = DefaultRefreshThreshold
	}
	if o.RefreshThreshold >= o.TokenExpiration {
		o.RefreshThreshold = o.TokenExpiration / 2
	}
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.AuthScheme == "" {
		o.AuthScheme = DefaultAuthScheme
	}
	if o.APIKeyHeader == "" {
		o.APIKeyHeader = DefaultAPIKeyHeader
	}
	if o.StoreName == "" {
		o.StoreName = MemoryStoreName
	}
	return o
}

func (o *Options) GetSigningKey() string    { return o.SigningKey }
func (o *Options) GetSigningMethod() string { return o.SigningMethod }
func (o *Options) GetTokenExpiration() int  { return o.TokenExpiration }
func (o *Options) GetRefreshThreshold() int { return o.RefreshThreshold }
func (o *Options) GetCookieName() string    { return o.CookieName }
func (o *Options) GetAuthScheme() string    { return o.AuthScheme }
func (o *Options) GetAPIKeyHeader() string  { return o.APIKeyHeader }
func (o *Options) GetIssuer() string        { return o.Issuer }
func (o *Options) GetAudience() []string    { return o.Audience }
func (o *Options) GetStoreName() string     { return o.StoreName }
func (o *Options) GetUsers() []StoredUser   { return o.Users }

var _ Config = (*Options)(nil)
