//go:build !linux

package transport

// applyPreBindOptions на прочих платформах ничего не делает
func applyPreBindOptions(fd uintptr, config Config) error {
	return nil
}

// applyVideoOptions на прочих платформах ничего не делает: буфер приема
// остается системным по умолчанию
func applyVideoOptions(fd uintptr, config Config) error {
	return nil
}
