// Package services exposes the confession board over HTTP.
//
// BoardService is the operator side. It accepts post and vote requests,
// hands them to a ledger driver and answers with the committed snapshot
// signed by the operator key:
//
//	GET  /snapshot       latest Signed[Snapshot]
//	POST /confession     {content, posted_at, slot_id, author_tag}
//	POST /vote           {direction: "up" | "down"}
//	GET  /ledger         committed blocks
//	GET  /ledger/verify  replay result
//	GET  /operator       operator public key
//	GET  /ws             websocket stream of Signed[Snapshot]
//
// Failures are reported as {"error": code, "message": text}. Conflicts with
// the current board state (already_occupied, no_active_confession,
// stale_slot) use 409, malformed requests 400.
//
// HTTPDriver is the participant side. It implements board.Driver against a
// remote BoardService and turns error codes back into the board package's
// sentinel errors. Posters send only the author tag they derived locally; the
// credential never leaves the participant.
package services
