// Package client is the EquiGive custody service Go SDK.
//
// It covers the full sponsorship flow: onboarding a farm, recording
// donations, releasing escrowed units to the farmer, retiring units after
// spend verification, and querying the audit log.
//
// # Connecting
//
// Every write operation needs a service token bound to a ledger address.
// Tokens are issued out of band (see 'equi token'); pass one at
// construction:
//
//	c, err := client.New("https://custody.equigive.org",
//	    client.WithToken(os.Getenv("EQUIGIVE_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tokens written to disk can be loaded with WithTokenFile.
//
// # Recording a donation
//
// Donation intake mints units into the farm's vault. Amounts are base-10
// integer strings so arbitrarily large values survive the JSON round trip:
//
//	res, err := c.Donate(ctx, "meadowbrook", "50", "stripe_ch_1Abc")
//	fmt.Println(res.Balance) // vault balance after the mint
//
// # Releasing and redeeming
//
// The farmer (holding a token for the vault's recipient address) sweeps
// escrowed units into their own account, and the redemption service burns
// them once a spend is verified:
//
//	c.Release(ctx, "meadowbrook", "10")
//	c.Redeem(ctx, "farmer-jones", "5", "receipt-0042")
//
// # Auditing
//
// The audit log is an ordered hash chain; Events pages through it and
// VerifyLedger asks the service to walk the whole chain:
//
//	valid, detail, _ := c.VerifyLedger(ctx)
//	if !valid {
//	    log.Printf("audit chain broken: %s", detail)
//	}
package client
