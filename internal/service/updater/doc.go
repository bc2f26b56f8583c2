// Package updater keeps watched Docker images up to date.
//
// A Checker pulls one image and compares the local image ID before and after
// the pull. The Updater walks the configured watch groups in order, checks
// each image at most once per run and runs the commands of every group in
// which at least one image changed. Failures are counted and logged without
// stopping the run. Run wires configuration, the run lock, the Docker client
// and the shell runner together for the CLI.
package updater
