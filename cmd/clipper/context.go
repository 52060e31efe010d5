package main

import (
	"strings"
	"sync"

	"clipforge/internal/config"
)

// commandContext lazily resolves configuration once per CLI invocation and
// builds the apiClient every command needs, grounded on the teacher's
// commandContext (cmd/spindle/context.go) but simplified: clipforge's CLI
// talks HTTP to clipperd rather than dialing a unix socket.
type commandContext struct {
	apiFlag    *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, tokenFlag: tokenFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// client builds an apiClient bound to the resolved API address: the
// --api flag wins, falling back to the configured api_bind.
func (c *commandContext) client() (*apiClient, error) {
	base := ""
	if c.apiFlag != nil {
		base = strings.TrimSpace(*c.apiFlag)
	}
	if base == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		base = "http://" + cfg.Paths.APIBind
	}
	base = strings.TrimRight(base, "/")

	token := ""
	if c.tokenFlag != nil {
		token = strings.TrimSpace(*c.tokenFlag)
	}
	if token == "" {
		if cfg, err := c.ensureConfig(); err == nil {
			token = cfg.Paths.APIToken
		}
	}

	return newAPIClient(base, token), nil
}
