package traceroute

import "time"

// MaxEnrichmentTime bounds how long a traceroute may sit unenriched before
// its derived status flips from "wip" to "timeout" (spec.md §3, §6).
const MaxEnrichmentTime = 2 * time.Minute

// MaxRawBytes is the maximum accepted size of a submitted traceroute's raw
// text (spec.md §3: "raw: text ≤16 KiB").
const MaxRawBytes = 16 * 1024

// TracerouteExpiry is how long a Traceroute row survives before the
// housekeeper purges it (spec.md §6: TRACEROUTE_EXPIRY = 7d).
const TracerouteExpiry = 7 * 24 * time.Hour
