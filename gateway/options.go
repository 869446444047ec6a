package gateway

import "github.com/viant/mcpauth/config"

// Options are command line overrides of the environment configuration.
type Options struct {
	Listen      string `short:"l" long:"listen" description:"listen address"`
	ServerURL   string `short:"s" long:"server-url" description:"public gateway URL"`
	UpstreamURL string `short:"u" long:"upstream" description:"downstream MCP server URL"`
	RedisURL    string `short:"r" long:"redis-url" description:"redis URL for the token store"`
	StateDir    string `long:"state-dir" description:"directory of the file client registry"`
	PAT         string `long:"pat" description:"personal access token, disables the OAuth surface"`
	Anonymous   bool   `long:"anonymous" description:"allow requests without a credential"`
}

// Apply copies every option that was set onto cfg.
func (o *Options) Apply(cfg *config.Config) {
	for target, value := range map[*string]string{
		&cfg.Listen:      o.Listen,
		&cfg.ServerURL:   o.ServerURL,
		&cfg.UpstreamURL: o.UpstreamURL,
		&cfg.RedisURL:    o.RedisURL,
		&cfg.StateDir:    o.StateDir,
		&cfg.PAT:         o.PAT,
	} {
		if value != "" {
			*target = value
		}
	}
	if o.Anonymous {
		cfg.AllowAnonymous = true
	}
}
