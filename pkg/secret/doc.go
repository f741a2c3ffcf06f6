// Package secret provides cluster secret generation.
//
// Cookies generated here gate cluster membership: gossip traffic is
// encrypted with a key derived from the cookie, so only nodes holding
// the same cookie can exchange messages.
//
// Security:
//
//   - Uses crypto/rand for CSPRNG
//   - Base64 RawURL encoding keeps cookies safe in URLs and files
package secret
