// Package library is the client-side kernel for the library lending service:
// it derives a session from a bearer token, gates screens and actions by role,
// and keeps a consistent local view of books and loans while the backend
// remains the source of truth.
//
// Session:
//   - SessionStore owns the persisted {token, identity} pair. Login decodes the
//     bearer token with DecodeClaims (no signature check), builds an Identity
//     and stores both records in a single atomic write. Any inconsistency
//     found on read (identity without token, unparsable identity) clears both
//     records instead of surfacing an error.
//   - Sessions are immutable snapshots with a monotonically increasing
//     Version. Subscribe to be notified when the snapshot is replaced.
//
// Access:
//   - Guard resolves screens and affordances against the two capabilities,
//     CapabilityAuthenticated and CapabilityAdmin. Admin-only reads are
//     refused before any request reaches the network.
//
// Lending cache:
//   - Cache mirrors backend collections. Writes never patch cached records;
//     a successful borrow, return or catalog edit marks every dependent
//     collection stale so the next read fetches it again.
//   - Overdue and active flags are pure functions of the loan and the
//     caller's clock. They are never cached.
//
// Transport:
//   - Gateway attaches the bearer token to every request and is the single
//     place where a 401 from the backend clears the session. It never
//     retries.
package library
