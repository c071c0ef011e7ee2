package storage

// Package storage provides optional persistence for run summaries.
//
// Only aggregate per-run counts are stored (no message content, no
// per-destination history). The data backs the /stats command and the
// daily digest; the bot runs fine with storage disabled.
