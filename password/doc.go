// Package password verifies candidate passwords against stored hashes.
//
// Two encodings are recognised:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//	$2a$<cost>$<salt+hash>   (also $2b$ and $2y$)
//
// Argon2id is what [Argon2.Hash] produces for new accounts. Bcrypt hashes are
// accepted so user stores migrated from older deployments keep working.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other caseAuth package.
//   - Log plaintext passwords or hash material.
package password
