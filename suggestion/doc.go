// Package suggestion tracks edit suggestions from request to outcome.
//
// A Provider asks an EditEngine for a suggestion and returns a *Suggestion
// handle. The host reports what happened to the handle: HandleShown any
// number of times, then exactly one of HandleAccepted, HandleRejected or
// HandleIgnored. Each handle's telemetry event is sent exactly once, on the
// terminal call or, when GetNextEdit fails, before the error is returned.
//
//	s, err := p.GetNextEdit(ctx, docID)
//	if err != nil {
//		if errors.Is(err, suggestion.ErrCancelled) {
//			return nil // user moved on
//		}
//		return err
//	}
//	_ = p.HandleShown(s)
//	_ = p.HandleAccepted(s)
//
// A second terminal call on the same handle is logged and returns
// ErrAlreadyFinalized without notifying the engine or sending telemetry.
package suggestion
