// Package accounts implements the account lifecycle for the CyberTrain
// course platform: registration with email verification, JWT login,
// stateless password reset challenges, and the repositories backing them.
//
// Users are created inactive together with their AuthProfile in a single
// transaction. Presenting the profile's verification token activates the
// account; the transition is a one-shot atomic update. Password resets use
// a keyed, re-derivable challenge bound to the user's current password
// hash, so a successful reset invalidates the challenge without any stored
// token state.
package accounts
