package toolclient

import "fmt"

// Service name constants for the supported tool servers.
const (
	ServiceGitHub          = "github"
	ServiceNotion          = "notion"
	ServiceSlack           = "slack"
	ServiceGoogleWorkspace = "google_workspace"
	ServiceGoogleSheets    = "google_sheets"
	ServiceInstagram       = "instagram"
	ServiceTrello          = "trello"
	ServiceTwitterX        = "twitter_x"
	ServiceOpenAI          = "openai"
	ServiceStripe          = "stripe"
	ServiceTwilio          = "twilio"
)

// probe is the low-risk operation used to verify freshly saved credentials.
type probe struct {
	operation string
	arguments map[string]any
}

// serviceDef binds a service name to its token shape: which token keys are
// required, how they map onto the child process environment, and which
// operation verifies them.
type serviceDef struct {
	requiredTokens []string
	env            func(tokens map[string]string) map[string]string
	probe          probe
}

// services is the closed dispatch table. Adding a service means adding an
// entry here, not another string comparison somewhere else.
var services = map[string]serviceDef{
	ServiceGitHub: {
		requiredTokens: []string{"token"},
		env: func(t map[string]string) map[string]string {
			return map[string]string{"GITHUB_PERSONAL_ACCESS_TOKEN": t["token"]}
		},
		probe: probe{operation: "get_me"},
	},
	ServiceNotion: {
		requiredTokens: []string{"token"},
		env: func(t map[string]string) map[string]string {
			headers := fmt.Sprintf(`{"Authorization": "Bearer %s", "Notion-Version": "2022-06-28"}`, t["token"])
			return map[string]string{"OPENAPI_MCP_HEADERS": headers}
		},
		probe: probe{operation: "get_self"},
	},
	ServiceSlack: {
		requiredTokens: []string{"xoxc_token", "xoxd_token"},
		env: func(t map[string]string) map[string]string {
			return map[string]string{
				"SLACK_MCP_XOXC_TOKEN": t["xoxc_token"],
				"SLACK_MCP_XOXD_TOKEN": t["xoxd_token"],
			}
		},
		probe: probe{operation: "auth_test"},
	},
	ServiceGoogleWorkspace: {
		requiredTokens: []string{"access_token"},
		env:            googleEnv,
		probe:          probe{operation: "get_about"},
	},
	ServiceGoogleSheets: {
		requiredTokens: []string{"access_token"},
		env:            googleEnv,
		probe:          probe{operation: "list_spreadsheets"},
	},
	ServiceInstagram: {
		requiredTokens: []string{"session_id", "csrf_token", "ds_user_id"},
		env: func(t map[string]string) map[string]string {
			return map[string]string{
				"INSTAGRAM_SESSION_ID": t["session_id"],
				"INSTAGRAM_CSRF_TOKEN": t["csrf_token"],
				"INSTAGRAM_DS_USER_ID": t["ds_user_id"],
			}
		},
		probe: probe{operation: "get_profile"},
	},
	ServiceTrello: {
		requiredTokens: []string{"api_key", "token"},
		env: func(t map[string]string) map[string]string {
			return map[string]string{
				"TRELLO_API_KEY":  t["api_key"],
				"TRELLO_TOKEN":    t["token"],
				"TRELLO_BOARD_ID": t["board_id"],
			}
		},
		probe: probe{operation: "get_boards"},
	},
	ServiceTwitterX: {
		requiredTokens: []string{"api_key", "api_secret", "access_token", "access_secret"},
		env: func(t map[string]string) map[string]string {
			return map[string]string{
				"TWITTER_API_KEY":       t["api_key"],
				"TWITTER_API_SECRET":    t["api_secret"],
				"TWITTER_ACCESS_TOKEN":  t["access_token"],
				"TWITTER_ACCESS_SECRET": t["access_secret"],
			}
		},
		probe: probe{operation: "get_me"},
	},
	ServiceOpenAI: {
		requiredTokens: []string{"api_key"},
		env: func(t map[string]string) map[string]string {
			return map[string]string{"OPENAI_API_KEY": t["api_key"]}
		},
		probe: probe{operation: "list_models"},
	},
	ServiceStripe: {
		requiredTokens: []string{"api_key"},
		env: func(t map[string]string) map[string]string {
			return map[string]string{"STRIPE_API_KEY": t["api_key"]}
		},
		probe: probe{operation: "get_account"},
	},
	ServiceTwilio: {
		requiredTokens: []string{"account_sid", "auth_token"},
		env: func(t map[string]string) map[string]string {
			return map[string]string{
				"TWILIO_ACCOUNT_SID": t["account_sid"],
				"TWILIO_AUTH_TOKEN":  t["auth_token"],
			}
		},
		probe: probe{operation: "get_account"},
	},
}

func googleEnv(t map[string]string) map[string]string {
	return map[string]string{
		"GOOGLE_ACCESS_TOKEN":  t["access_token"],
		"GOOGLE_CLIENT_ID":     t["client_id"],
		"GOOGLE_CLIENT_SECRET": t["client_secret"],
		"GOOGLE_REFRESH_TOKEN": t["refresh_token"],
	}
}

// Services returns the supported service names.
func Services() []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	return names
}
