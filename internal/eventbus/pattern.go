package eventbus

import "strings"

// matchTopic implements the exact matching rule of spec §4.4: let
// P = p1.p2...pk and T = t1.t2...tn. P matches T iff either
//
//	(a) P == T, or
//	(b) pk == "*", k-1 <= n, and p1..p(k-1) == t1..t(k-1).
//
// Only a trailing "*" component is documented as meaningful; the open
// question of middle-segment wildcards (spec §9) is resolved here by
// rejecting them — see DESIGN.md.
func matchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	p := strings.Split(pattern, ".")
	k := len(p)
	if k == 0 || p[k-1] != "*" {
		return false
	}

	t := strings.Split(topic, ".")
	n := len(t)
	if k-1 > n {
		return false
	}
	for i := 0; i < k-1; i++ {
		if p[i] != t[i] {
			return false
		}
	}
	return true
}
