package request

type RenameRoute struct {
	Name string `json:"name"`
}
