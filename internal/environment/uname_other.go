//go:build !unix

package environment

func unameMachine() string {
	return ""
}
