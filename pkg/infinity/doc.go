// Package infinity provides a client for the Carrier/Bryant Infinity cloud
// API: OAuth 1.0a signed requests, session lifecycle, system/zone telemetry,
// and the hold sequencing required to change setpoints.
//
// # Basic Usage
//
//	ctx := context.Background()
//	client, err := infinity.NewClient("user@example.com", "secret")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	serials, err := client.ListSystems(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	system, err := client.FetchStatus(ctx, serials[0])
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration
//
// The client can be configured using functional options:
//
//	client, err := infinity.NewClient(user, pass,
//	    infinity.WithSessionTTL(30*time.Minute),
//	    infinity.WithRetryPolicy(time.Second, 3),
//	    infinity.WithLogger(logger),
//	)
//
// # Setpoint writes
//
// The thermostat rejects direct setpoint writes while a hold is active, so
// SetTemperature runs a clear/settle/apply sequence with a mandatory delay
// between the two writes. A failed command reports which phase failed; an
// apply-phase failure means the previous hold was cleared and not restored.
//
// # Concurrency
//
// A Client keeps one in-memory session and issues one request at a time; it
// is not safe for concurrent use. Run one Client per account, and give each
// concurrently polled system its own Client.
package infinity
