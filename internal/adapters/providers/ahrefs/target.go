package ahrefs

// Query modes and protocols
const (
	ModeSubdomains = "subdomains"
	ModeDomain     = "domain"
	ProtocolBoth   = "both"
	ProtocolHTTPS  = "https"
)

// Target is one domain as the API addresses it
// Lang is metadata attached once resolved and not part of identity
type Target struct {
	Domain   string
	Lang     string
	Mode     string
	Protocol string
}

// TargetKey is the identity of a Target
type TargetKey struct {
	Domain   string
	Mode     string
	Protocol string
}

// NewTarget applies the default mode and protocol
func NewTarget(domain string) Target {
	return Target{Domain: domain, Mode: ModeSubdomains, Protocol: ProtocolBoth}
}

// Key returns the identity triple
func (t Target) Key() TargetKey {
	t = t.withDefaults()
	return TargetKey{Domain: t.Domain, Mode: t.Mode, Protocol: t.Protocol}
}

func (t Target) withDefaults() Target {
	if t.Mode == "" {
		t.Mode = ModeSubdomains
	}
	if t.Protocol == "" {
		t.Protocol = ProtocolBoth
	}
	return t
}
