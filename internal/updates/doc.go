// Package updates announces regatta changes to downstream consumers.
//
// # Queueing
//
// Every successful edit in the scoring UI calls QueueRequest with the
// regatta, an Activity (details, finalized, score, rotation, rp, summary,
// team) and an optional argument such as a team ID. The request is stored
// in the update_requests table and the worker is woken. Queueing never
// returns an error to the caller.
//
// # Draining
//
// Manager.Run drains pending requests on a ticker. Requests sharing
// regatta, activity and argument are published as one Notice. A key that
// was published less than Options.Coalesce ago stays pending until the
// window passes, so a burst of finish entries produces at most one notice
// per window.
//
// Failed publishes stay pending and are retried until MaxAttempts, after
// which they are completed with the last error kept.
//
// # Publishers
//
//   - WebhookPublisher POSTs the notice as JSON with an HS256 bearer token
//     carrying the regatta and activity claims
//   - LogPublisher writes the notice to the log
package updates
