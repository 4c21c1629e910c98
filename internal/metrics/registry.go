package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution outcomes.
const (
	OutcomeBypass       = "bypass"
	OutcomeNotFound     = "not-found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeRedirect     = "redirect"
	OutcomeNotModified  = "not-modified"
	OutcomeRewrite      = "rewrite"
)

// Collaborators whose failures are counted.
const (
	CollaboratorRouter     = "router"
	CollaboratorAuthorizer = "authorizer"
	CollaboratorSettings   = "settings"
)

type ResolverMetrics struct {
	Resolutions          *prometheus.CounterVec
	CollaboratorFailures *prometheus.CounterVec
}

type MetricsRegistry struct {
	Resolver *ResolverMetrics
}

var Registry *MetricsRegistry

func init() {
	Registry = &MetricsRegistry{
		Resolver: &ResolverMetrics{
			Resolutions: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "page_resolutions_total",
				Help: "The total number of requests seen by the page resolver, by outcome",
			}, []string{"outcome"}),
			CollaboratorFailures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "page_resolver_collaborator_failures_total",
				Help: "The total number of errors and panics raised by resolver collaborators",
			}, []string{"collaborator"}),
		},
	}
}

func Resolved(outcome string) {
	Registry.Resolver.Resolutions.WithLabelValues(outcome).Inc()
}

func CollaboratorFailed(collaborator string) {
	Registry.Resolver.CollaboratorFailures.WithLabelValues(collaborator).Inc()
}
