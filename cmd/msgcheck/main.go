// Command msgcheck runs the payment notification parser offline, one message per
// line, so new vendor formats can be checked before they reach the ledger.
package main

import (
	"os"

	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		zap.NewExample().Sugar().Errorf("msgcheck: %v", err)
		os.Exit(1)
	}
}
