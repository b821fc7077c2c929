package schema

// Provider names understood by the built-in toolkits.
const (
	ProviderJira   = "jira"
	ProviderGitHub = "github"
	ProviderGDrive = "gdrive"
)

// Field names shared across provider schemas.
const (
	FieldToken        = "token"
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldServerURL    = "server_url"
	FieldUsername     = "username"
	FieldExpiry       = "expiry"
)

// Defaults returns a registry pre-loaded with the schemas for the built-in
// providers: jira (personal access token + server URL), github (OAuth access
// token) and gdrive (OAuth access/refresh token pair with expiry).
func Defaults() *Registry {
	r := NewRegistry()

	// Registration of the built-in schemas cannot fail: names are unique
	// and each schema is non-empty.
	for _, s := range []Schema{
		{
			Provider: ProviderJira,
			Fields: []FieldSpec{
				{Name: FieldToken, Secret: true, Required: true},
				{Name: FieldServerURL, Secret: false, Required: true},
				{Name: FieldUsername, Secret: false, Required: false},
			},
		},
		{
			Provider: ProviderGitHub,
			Fields: []FieldSpec{
				{Name: FieldAccessToken, Secret: true, Required: true},
				{Name: FieldServerURL, Secret: false, Required: false},
				{Name: FieldUsername, Secret: false, Required: false},
			},
		},
		{
			Provider: ProviderGDrive,
			Fields: []FieldSpec{
				{Name: FieldAccessToken, Secret: true, Required: true},
				{Name: FieldRefreshToken, Secret: true, Required: false},
				{Name: FieldExpiry, Secret: false, Required: false},
			},
		},
	} {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}

	return r
}
