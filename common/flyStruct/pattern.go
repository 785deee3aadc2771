package flyStruct

// FindPattern returns the index of the first occurrence of pattern in buf, or -1.
func FindPattern(buf, pattern []byte) int {
	for i := 0; i <= len(buf)-len(pattern); i++ {
		found := true
		for j := range pattern {
			if buf[i+j] != pattern[j] {
				found = false
				break
			}
		}
		if found {
			return i
		}
	}
	return -1
}
