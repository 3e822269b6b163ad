// Package sec provides authentication and security primitives for the web
// application.
//
// # Passwords
//
// Passwords are stored as bcrypt hashes. Rows written before hashing was
// introduced hold plaintext; [VerifyStoredPassword] accepts those with a
// constant-time comparison and reports that the caller should rehash.
//
// # Two-factor
//
// TOTP secrets are SHA1, six digit, thirty second codes compatible with common
// authenticator apps. [IssueTOTP] returns the secret alongside a provisioning
// URI and its QR code as a data URI.
//
// # Components
//
//   - [HashPassword], [ComparePassword], [VerifyStoredPassword]: bcrypt utilities
//   - [IssueTOTP], [ValidateTOTP], [GenerateTOTP]: TOTP utilities
//   - [GetAuthenticatedAccount], [SetAuthenticatedAccount]: context accessors
package sec
