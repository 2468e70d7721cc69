// Command backon expands //backon:retry templates into retrying Go code.
package main

func main() {
	Execute()
}
