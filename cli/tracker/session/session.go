package session

// Source текущий авторизованный пользователь. Аутентификация вне трекера,
// сюда приходит только непрозрачный идентификатор.
type Source interface {
	UserID() (string, bool)
}

// Static пользователь из конфигурации
type Static struct {
	ID string
}

func (s Static) UserID() (string, bool) {
	return s.ID, s.ID != ""
}
