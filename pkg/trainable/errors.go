package trainable

import "fmt"

func errMismatch(a1, h1, a2, h2 int) error {
	return fmt.Errorf("trainable shape mismatch: dst=%dx%d src=%dx%d", a1, h1, a2, h2)
}
