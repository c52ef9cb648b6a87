package doctor

import (
	"fmt"
	"os"
	"os/signal"

	"mockinterview/shutdown"
)

// setupInterruptHandler lets Ctrl+C abort a check that is holding the microphone.
func setupInterruptHandler() func() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted")
			os.Exit(130)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}
