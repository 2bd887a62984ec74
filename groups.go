package auth

import (
	"sort"

	"github.com/iden3/go-iden3-verifier/pubsignals"
	"github.com/iden3/iden3comm/v2/protocol"
	"github.com/pkg/errors"
)

const anyIssuer = "*"

// checkGroups verifies that requests sharing a group id ask for the same
// credential: equal type and context, and allow-lists ordered by inclusion.
func checkGroups(scope []protocol.ZeroKnowledgeProofRequest, queries []pubsignals.Query) error {
	groups := make(map[int][]int)
	for i, q := range queries {
		if q.GroupID == 0 {
			continue
		}
		groups[q.GroupID] = append(groups[q.GroupID], i)
	}

	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, groupID := range ids {
		members := groups[groupID]
		first := queries[members[0]]
		for _, m := range members[1:] {
			q := queries[m]
			switch {
			case q.Type != first.Type:
				return errors.Wrapf(ErrGroupQueryMismatch,
					"group %d: request %d type %q, request %d type %q",
					groupID, scope[members[0]].ID, first.Type, scope[m].ID, q.Type)
			case q.Context != first.Context:
				return errors.Wrapf(ErrGroupQueryMismatch,
					"group %d: request %d context %q, request %d context %q",
					groupID, scope[members[0]].ID, first.Context, scope[m].ID, q.Context)
			}
		}
		for i, a := range members {
			for _, b := range members[i+1:] {
				if !issuersComparable(queries[a].AllowedIssuers, queries[b].AllowedIssuers) {
					return errors.Wrapf(ErrGroupQueryMismatch,
						"group %d: allowed issuers of requests %d and %d are not compatible",
						groupID, scope[a].ID, scope[b].ID)
				}
			}
		}
	}
	return nil
}

func issuersComparable(a, b []string) bool {
	return includes(a, b) || includes(b, a)
}

// includes reports whether every issuer allowed by sub is allowed by super.
func includes(super, sub []string) bool {
	set := make(map[string]struct{}, len(super))
	for _, s := range super {
		if s == anyIssuer {
			return true
		}
		set[s] = struct{}{}
	}
	for _, s := range sub {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
