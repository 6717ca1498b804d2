// Package password hashes and verifies account passwords.
//
// New hashes use Argon2id and are encoded as PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes ($2a$, $2b$, $2y$) are still accepted by [Hasher.Verify] so
// credentials created before the switch keep working; [Hasher.NeedsRehash]
// reports them so the caller can upgrade after a successful login.
//
// Password policy (minimum length) is enforced by the Engine, not here.
package password
