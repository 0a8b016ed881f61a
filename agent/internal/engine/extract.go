package engine

import "regexp"

var (
	// Pump.fun mints get priority so the general base58 pattern cannot
	// truncate the trailing suffix.
	pumpAddressRe = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}pump\b`)
	solAddressRe  = regexp.MustCompile(`\b[1-9A-HJ-NP-Za-km-z]{32,44}\b`)
	evmAddressRe  = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)
)

// ExtractToken pulls the first contract address out of a chat message.
// Supported forms, in priority order: pump.fun Solana mints, general
// base58 Solana addresses, and 0x-prefixed EVM addresses. Returns "" when
// the text contains none.
func ExtractToken(text string) string {
	if text == "" {
		return ""
	}
	if m := pumpAddressRe.FindString(text); m != "" {
		return m
	}
	if m := solAddressRe.FindString(text); m != "" {
		return m
	}
	if m := evmAddressRe.FindString(text); m != "" {
		return m
	}
	return ""
}
