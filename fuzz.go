package moody

func Fuzz(input []byte) int {
	if _, err := Compile(string(input)); err != nil {
		return 0
	}
	return 1
}
