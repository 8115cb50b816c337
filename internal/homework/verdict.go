package homework

import "strings"

const namePlaceholder = "{homework}"

// verdicts maps each known status to its message template.
// Every template contains namePlaceholder exactly once.
var verdicts = map[Status]string{
	StatusRejected: "У вас проверили работу \"{homework}\"!\n\n" +
		"К сожалению в работе нашлись ошибки.",
	StatusReviewing: "Работа {homework} взята в ревью",
	StatusApproved: "У вас проверили работу \"{homework}\"!\n\n" +
		"Ревьюеру всё понравилось, можно приступать к следующему уроку.",
}

// Template returns the message template for st.
func Template(st Status) (string, bool) {
	t, ok := verdicts[st]
	return t, ok
}

// Translate renders the notification text for s.
//
// An unknown status means the API contract changed; it is returned as a
// KindUnexpectedStatus error and never mapped to a fallback message.
func Translate(s Submission) (string, error) {
	tmpl, ok := verdicts[s.Status]
	if !ok {
		return "", &Error{Kind: KindUnexpectedStatus, Name: s.Name, Status: s.Status}
	}
	return strings.Replace(tmpl, namePlaceholder, s.Name, 1), nil
}
