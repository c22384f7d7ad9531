//go:build !unix

package doctor

func softFileLimit() (uint64, error) {
	return 0, errLimitUnsupported
}
