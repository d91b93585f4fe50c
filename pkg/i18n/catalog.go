package i18n

// Message keys shared by the API and the worker.
const (
	KeyAppName = "app.name"

	KeyJustNow    = "time.just_now"
	KeyMinuteAgo  = "time.minute_ago"
	KeyMinutesAgo = "time.minutes_ago"
	KeyHourAgo    = "time.hour_ago"
	KeyHoursAgo   = "time.hours_ago"
	KeyDayAgo     = "time.day_ago"
	KeyDaysAgo    = "time.days_ago"
	KeyDateLayout = "time.date_layout"

	KeyDocumentReadyTitle    = "notification.document_ready.title"
	KeyDocumentReadyMessage  = "notification.document_ready.message"
	KeyDocumentFailedTitle   = "notification.document_failed.title"
	KeyDocumentFailedMessage = "notification.document_failed.message"
	KeyMemberAddedTitle      = "notification.member_added.title"
	KeyMemberAddedMessage    = "notification.member_added.message"
	KeyRoleChangedTitle      = "notification.role_changed.title"
	KeyRoleChangedMessage    = "notification.role_changed.message"
	KeyMemberRemovedTitle    = "notification.member_removed.title"
	KeyMemberRemovedMessage  = "notification.member_removed.message"
)

var catalogs = map[string]map[string]string{
	"en": {
		KeyAppName:               "DocuFlow",
		KeyJustNow:               "just now",
		KeyMinuteAgo:             "1 minute ago",
		KeyMinutesAgo:            "%d minutes ago",
		KeyHourAgo:               "1 hour ago",
		KeyHoursAgo:              "%d hours ago",
		KeyDayAgo:                "1 day ago",
		KeyDaysAgo:               "%d days ago",
		KeyDateLayout:            "Jan 2, 2006",
		KeyDocumentReadyTitle:    "Document ready",
		KeyDocumentReadyMessage:  "\"%s\" has been summarized and indexed.",
		KeyDocumentFailedTitle:   "Processing failed",
		KeyDocumentFailedMessage: "We could not process \"%s\". Try reprocessing it later.",
		KeyMemberAddedTitle:      "Added to organization",
		KeyMemberAddedMessage:    "You were added to %s as %s.",
		KeyRoleChangedTitle:      "Role changed",
		KeyRoleChangedMessage:    "Your role in %s is now %s.",
		KeyMemberRemovedTitle:    "Removed from organization",
		KeyMemberRemovedMessage:  "You were removed from %s.",
	},
	"es": {
		KeyJustNow:               "justo ahora",
		KeyMinuteAgo:             "hace 1 minuto",
		KeyMinutesAgo:            "hace %d minutos",
		KeyHourAgo:               "hace 1 hora",
		KeyHoursAgo:              "hace %d horas",
		KeyDayAgo:                "hace 1 día",
		KeyDaysAgo:               "hace %d días",
		KeyDateLayout:            "02/01/2006",
		KeyDocumentReadyTitle:    "Documento listo",
		KeyDocumentReadyMessage:  "\"%s\" ha sido resumido e indexado.",
		KeyDocumentFailedTitle:   "Error de procesamiento",
		KeyDocumentFailedMessage: "No pudimos procesar \"%s\". Vuelve a intentarlo más tarde.",
		KeyMemberAddedTitle:      "Añadido a la organización",
		KeyMemberAddedMessage:    "Te añadieron a %s como %s.",
		KeyRoleChangedTitle:      "Rol actualizado",
		KeyRoleChangedMessage:    "Tu rol en %s ahora es %s.",
		KeyMemberRemovedTitle:    "Eliminado de la organización",
		KeyMemberRemovedMessage:  "Ya no eres miembro de %s.",
	},
	"de": {
		KeyJustNow:               "gerade eben",
		KeyMinuteAgo:             "vor 1 Minute",
		KeyMinutesAgo:            "vor %d Minuten",
		KeyHourAgo:               "vor 1 Stunde",
		KeyHoursAgo:              "vor %d Stunden",
		KeyDayAgo:                "vor 1 Tag",
		KeyDaysAgo:               "vor %d Tagen",
		KeyDateLayout:            "02.01.2006",
		KeyDocumentReadyTitle:    "Dokument bereit",
		KeyDocumentReadyMessage:  "„%s“ wurde zusammengefasst und indexiert.",
		KeyDocumentFailedTitle:   "Verarbeitung fehlgeschlagen",
		KeyDocumentFailedMessage: "„%s“ konnte nicht verarbeitet werden. Bitte später erneut versuchen.",
		KeyMemberAddedTitle:      "Zur Organisation hinzugefügt",
		KeyMemberAddedMessage:    "Du wurdest %s als %s hinzugefügt.",
		KeyRoleChangedTitle:      "Rolle geändert",
		KeyRoleChangedMessage:    "Deine Rolle in %s ist jetzt %s.",
		KeyMemberRemovedTitle:    "Aus Organisation entfernt",
		KeyMemberRemovedMessage:  "Du wurdest aus %s entfernt.",
	},
	"fr": {
		KeyJustNow:               "à l'instant",
		KeyMinuteAgo:             "il y a 1 minute",
		KeyMinutesAgo:            "il y a %d minutes",
		KeyHourAgo:               "il y a 1 heure",
		KeyHoursAgo:              "il y a %d heures",
		KeyDayAgo:                "il y a 1 jour",
		KeyDaysAgo:               "il y a %d jours",
		KeyDateLayout:            "02/01/2006",
		KeyDocumentReadyTitle:    "Document prêt",
		KeyDocumentReadyMessage:  "« %s » a été résumé et indexé.",
		KeyDocumentFailedTitle:   "Échec du traitement",
		KeyDocumentFailedMessage: "Impossible de traiter « %s ». Réessayez plus tard.",
		KeyMemberAddedTitle:      "Ajouté à l'organisation",
		KeyMemberAddedMessage:    "Vous avez été ajouté à %s en tant que %s.",
		KeyRoleChangedTitle:      "Rôle modifié",
		KeyRoleChangedMessage:    "Votre rôle dans %s est désormais %s.",
		KeyMemberRemovedTitle:    "Retiré de l'organisation",
		KeyMemberRemovedMessage:  "Vous avez été retiré de %s.",
	},
}
