package wsmodels

type ServerMessage struct {
	ToUserID string `json:"-"`
	Time     string `json:"time"` // время события
	Code     string `json:"code"` // уровень: info/warning/error
	Msg      string `json:"msg"`  // текст события
}
