package tools

import (
	"log/slog"

	"gail/internal/agent"
)

// Registry builds the tool registry advertised to the model. web_search is
// only registered when a Brave API key is configured.
func Registry(store Certificates, braveAPIKey string) *agent.Registry {
	reg := agent.NewRegistry()
	reg.Register(NewProcessCOIRequest(store))
	reg.Register(NewLookupPolicies(store))
	reg.Register(NewSearchCertificates(store))

	if braveAPIKey != "" {
		web, err := NewWebSearch(braveAPIKey)
		if err != nil {
			slog.Warn("web_search disabled", "error", err)
		} else {
			reg.Register(web)
		}
	}
	return reg
}
