// Package evercookie stores an identifier redundantly across several storage substrates and
// recovers it as long as at least one of them still holds it.
//
// A Client writes a record to the cookie jar, the durable and the session web storage
// synchronously, then to the async object store and the side channels in the background. A key
// is only ever written once: if the cookie, durable or session backend already holds it, Set
// writes nothing. Get reads all readable backends and returns the first value found in the
// order cookie, durable, session, async store.
//
// Basic usage:
//
//	client, err := evercookie.Open(common.DefaultConfig())
//	if err != nil {
//	    // Handle error
//	}
//	defer client.Close()
//
//	pending, err := client.Set("id", uuid.NewString())
//	if err != nil {
//	    // Handle error
//	}
//	_ = pending.Wait(ctx) // optional
//
//	value, found := client.Get(ctx, "id")
package evercookie
