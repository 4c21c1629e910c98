package bypassrules

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Rules lists requests that page resolution must leave alone.
type Rules []Rule

// Rule matches requests on path, path prefix, method and query parameters.
// Empty fields match everything, a rule with no fields set matches all requests.
type Rule struct {
	Prefix string            `yaml:"prefix"`
	Path   string            `yaml:"path"`
	Method string            `yaml:"method"`
	Query  map[string]string `yaml:"query"`
}

// Match returns the first rule matching the request, or nil.
func (r Rules) Match(req *http.Request) *Rule {
rulesLoop:
	for i := range r {
		rule := &r[i]
		if rule.Method != "" && !strings.EqualFold(rule.Method, req.Method) {
			continue
		}
		if rule.Path != "" && rule.Path != req.URL.Path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(req.URL.Path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry := req.URL.Query()
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		log.Trace().Msgf("Request %s:%s matches bypass rule %+v", req.Method, req.URL.Path, *rule)
		return rule
	}
	return nil
}

// Bypass reports whether any rule matches the request.
func (r Rules) Bypass(req *http.Request) bool {
	return r.Match(req) != nil
}
