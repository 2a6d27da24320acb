// Package updater implements the self-update flow of artifact-keeper.
//
// A Coordinator asks the metadata endpoint for the latest release, compares it
// with the running version, lets an external Decider choose between installing
// now and deferring, downloads and verifies the update package through the
// artifact store and finally hands it to an install trigger.
// Run is the CLI entry point that wires the coordinator from configuration.
package updater
