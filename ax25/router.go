package ax25

import "regexp"

// Receiver is called when a frame's destination callsign matches a
// binding. match is a one-element slice holding the matched base for
// exact-match bindings, and the regexp match result for pattern bindings
// (spec.md §4.4/§9).
type Receiver func(frame Frame, match []string)

// binding is either an exact-string or compiled-regex match against the
// destination callsign base, with an optional SSID filter. Router holds
// both kinds in one ordered slice so dispatch order is always insertion
// order, per spec.md §4.4.
type binding struct {
	exact   string
	pattern *regexp.Regexp
	ssid    *uint8 // nil means "any SSID"
	recv    Receiver
}

func (b binding) matches(c Callsign) []string {
	if b.ssid != nil && *b.ssid != c.SSID {
		return nil
	}
	if b.pattern != nil {
		if m := b.pattern.FindStringSubmatch(c.Base); m != nil {
			return m
		}
		return nil
	}
	if b.exact == c.Base {
		return []string{c.Base}
	}
	return nil
}

// Router dispatches received frames to callbacks bound by destination
// callsign, exact or regex, in insertion order (spec.md §4.4).
type Router struct {
	bindings []*binding
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{}
}

// Bind registers recv to be called for frames whose destination callsign
// base matches pattern exactly. ssid, if non-nil, additionally restricts
// matches to that SSID. Returns a token that can be passed to Unbind.
func (r *Router) Bind(pattern string, ssid *uint8, recv Receiver) int {
	b := &binding{exact: pattern, ssid: ssid, recv: recv}
	r.bindings = append(r.bindings, b)
	return len(r.bindings) - 1
}

// BindRegex registers recv to be called for frames whose destination
// callsign base matches the compiled regular expression re.
func (r *Router) BindRegex(re *regexp.Regexp, ssid *uint8, recv Receiver) int {
	b := &binding{pattern: re, ssid: ssid, recv: recv}
	r.bindings = append(r.bindings, b)
	return len(r.bindings) - 1
}

// Unbind removes the binding previously returned by Bind/BindRegex.
func (r *Router) Unbind(token int) {
	if token < 0 || token >= len(r.bindings) || r.bindings[token] == nil {
		return
	}
	r.bindings[token] = nil
}

// Dispatch delivers frame to every binding whose pattern matches the
// frame's destination address, in insertion order. Callbacks are invoked
// synchronously and must not block (spec.md §4.4) — a callback wanting to
// transmit should queue via Interface.Transmit rather than doing I/O here.
func (r *Router) Dispatch(frame Frame) {
	if len(frame.Path) == 0 {
		return
	}
	dest := frame.Path.Destination()
	for _, b := range r.bindings {
		if b == nil {
			continue
		}
		if m := b.matches(dest); m != nil {
			b.recv(frame, m)
		}
	}
}
