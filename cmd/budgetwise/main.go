package main

import "github.com/OtmaneTouhami/budget-wise/cmd/budgetwise/cmd"

func main() {
	cmd.Execute()
}
