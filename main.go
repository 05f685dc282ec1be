// Command dashboard serves the TruthInListings fraud-detection dashboard.
package main

import "github.com/truthinlistings/dashboard/internal/cli"

func main() {
	cli.Execute()
}
