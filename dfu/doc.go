// Package dfu upgrades device firmware over SMP.
//
// # Overview
//
// This package orchestrates the complete upgrade sequence for an MCUboot
// device:
//   - Uploading the image to the secondary slot
//   - Marking it for a test boot (or confirming it outright)
//   - Resetting the device and waiting for it to answer again
//   - Confirming the new image once it runs
//
// # Basic Usage
//
//	img, err := os.ReadFile("zephyr.signed.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	up := dfu.New(mcumgr.New(conn), img)
//	if err := up.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	up := dfu.New(client, img,
//	    dfu.WithProgressCallback(func(p dfu.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %d/%d bytes\n",
//	            p.Phase, p.Percentage, p.BytesSent, p.TotalBytes)
//	    }),
//	)
//
// # Modes
//
// ModeTestAndConfirm (the default) lets MCUboot revert to the previous image
// if the new one never comes up. ModeConfirmOnly skips the test boot.
// ModeTestOnly leaves confirmation to the application.
//
// # Reset Polling
//
// After the reset the device is polled with an image list request until it
// answers:
//
//	up := dfu.New(client, img,
//	    dfu.WithResetWait(10*time.Second),
//	    dfu.WithPollInterval(2*time.Second),
//	    dfu.WithPollAttempts(10),
//	)
//
// # Error Handling
//
// Run returns a *PhaseError naming the failed phase. The cause is usually a
// *protocol.Error, or a *StateError when the device reports an unexpected
// image state:
//
//	var pe *dfu.PhaseError
//	if errors.As(err, &pe) && pe.Phase == dfu.PhaseResetting {
//	    // device did not come back
//	}
package dfu
