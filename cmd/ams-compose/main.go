// Command ams-compose is a thin Cobra shell over internal/orchestrator,
// internal/validator, and internal/manifest — no business logic lives
// here beyond flag parsing and result formatting.
package main

func main() {
	Execute()
}
