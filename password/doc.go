// Package password implements Argon2id password hashing and verification.
//
// # Output format
//
// Hashes are encoded in PHC string format with unpadded base64 segments:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash after the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other accountcore package.
//   - Log plaintext passwords.
package password
