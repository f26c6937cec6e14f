package i18n

// Message keys. The English text doubles as the key.
const (
	MsgFillAllFields       = "Please fill in all fields"
	MsgUsernameTooShort    = "Username must be at least %d characters"
	MsgPasswordTooShort    = "Password must be at least %d characters"
	MsgPasswordMismatch    = "Passwords do not match"
	MsgPasswordComplexity  = "Password must contain at least one lowercase letter, one uppercase letter and one number"
	MsgBadCredentials      = "Invalid username or password"
	MsgInvalidInput        = "Invalid input, please check the form"
	MsgUsernameTaken       = "That username is already taken"
	MsgServerError         = "Server error, please try again later"
	MsgWelcome             = "Welcome back, %s!"
	MsgRegistered          = "Account created, you can now log in"
	MsgLoggedOut           = "You have been logged out"
	MsgSessionExpired      = "Your session has expired, please log in again"
	MsgConnectivity        = "Cannot connect to the server"
	MsgTooManyRequests     = "Too many requests, try again shortly"
	MsgNoStories           = "No stories yet"
	MsgNoMatches           = "No stories match your filters"
	MsgStoriesFound        = "%d stories found"
	MsgLoadStoriesFailed   = "Could not load stories: %s"
	MsgTitleContentNeeded  = "Title and content are required"
	MsgStoryPublished      = "Story published"
	MsgStoryUpdated        = "Story updated"
	MsgStoryDeleted        = "Story deleted"
	MsgOnlyImages          = "Only image files can be uploaded"
	MsgImageLimit          = "You can add at most %d images"
	MsgImageSlotsLeft      = "Only %d more images can be added"
	MsgImageTooLarge       = "%s is larger than 5MB"
	MsgUploading           = "Uploading %d of %d"
	MsgUploaded            = "Uploaded %d images"
	MsgUploadFailed        = "Could not upload %s: %s"
	MsgImageDeleted        = "Image deleted"
	MsgNoImages            = "No images"
	MsgImageCount          = "%d images"
	MsgAccessDenied        = "Access denied: administrators only"
	MsgStoryRemoved        = "Story removed"
	MsgUserBanned          = "User %s banned"
	MsgUserUnbanned        = "User %s unbanned"
	MsgRoleChanged         = "%s is now %s"
	MsgStoryNotFound       = "Story not found"
	MsgLoadStoryFailed     = "Could not load the story: %s"
	MsgStatusActive        = "Active"
	MsgStatusFlagged       = "Flagged"
	MsgStatusDeleted       = "Deleted"
	MsgRoleUser            = "User"
	MsgRoleAdmin           = "Administrator"
	MsgNoBannedUsers       = "No banned users"
	MsgNoFlaggedStories    = "No flagged stories"
	MsgDeleteStoryConfirm  = "Delete this story?"
	MsgUnknownAuthor       = "Unknown"
	MsgStatusBanned        = "Banned"
	MsgLoadUsersFailed     = "Could not load users: %s"
	MsgLoadStatsFailed     = "Could not load statistics: %s"
	MsgBanReasonRequired   = "A reason is required to ban a user"
	MsgInvalidRole         = "Unknown role %s"
	MsgImageCounter        = "%d of %d"
	MsgImageAlt            = "Image %d"
	MsgAgo                 = "ago"
	MsgFromNow             = "from now"
)

var months = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var spanish = map[string]string{
	MsgFillAllFields:      "Por favor completa todos los campos",
	MsgUsernameTooShort:   "El nombre de usuario debe tener al menos %d caracteres",
	MsgPasswordTooShort:   "La contraseña debe tener al menos %d caracteres",
	MsgPasswordMismatch:   "Las contraseñas no coinciden",
	MsgPasswordComplexity: "La contraseña debe contener al menos una minúscula, una mayúscula y un número",
	MsgBadCredentials:     "Usuario o contraseña incorrectos",
	MsgInvalidInput:       "Datos inválidos, revisa el formulario",
	MsgUsernameTaken:      "Ese nombre de usuario ya existe",
	MsgServerError:        "Error del servidor, inténtalo más tarde",
	MsgWelcome:            "¡Bienvenido de nuevo, %s!",
	MsgRegistered:         "Cuenta creada, ya puedes iniciar sesión",
	MsgLoggedOut:          "Sesión cerrada",
	MsgSessionExpired:     "Sesión expirada. Por favor, inicia sesión nuevamente.",
	MsgConnectivity:       "No se puede conectar al servidor",
	MsgTooManyRequests:    "Demasiadas peticiones, inténtalo en un momento",
	MsgNoStories:          "Aún no hay historias",
	MsgNoMatches:          "Ninguna historia coincide con los filtros",
	MsgLoadStoriesFailed:  "No se pudieron cargar las historias: %s",
	MsgTitleContentNeeded: "El título y el contenido son obligatorios",
	MsgStoryPublished:     "Historia publicada",
	MsgStoryUpdated:       "Historia actualizada",
	MsgStoryDeleted:       "Historia eliminada",
	MsgOnlyImages:         "Solo se pueden subir imágenes",
	MsgImageLimit:         "Puedes añadir como máximo %d imágenes",
	MsgImageTooLarge:      "%s supera los 5MB",
	MsgUploading:          "Subiendo %d de %d",
	MsgUploadFailed:       "No se pudo subir %s: %s",
	MsgImageDeleted:       "Imagen eliminada",
	MsgNoImages:           "Sin imágenes",
	MsgAccessDenied:       "Acceso denegado: solo administradores",
	MsgStoryRemoved:       "Historia eliminada",
	MsgUserBanned:         "Usuario %s baneado",
	MsgUserUnbanned:       "Usuario %s desbaneado",
	MsgRoleChanged:        "%s ahora es %s",
	MsgStoryNotFound:      "Historia no encontrada",
	MsgLoadStoryFailed:    "No se pudo cargar la historia: %s",
	MsgStatusActive:       "Activa",
	MsgStatusFlagged:      "Reportada",
	MsgStatusDeleted:      "Eliminada",
	MsgRoleUser:           "Usuario",
	MsgRoleAdmin:          "Administrador",
	MsgNoBannedUsers:      "No hay usuarios baneados",
	MsgNoFlaggedStories:   "No hay historias reportadas",
	MsgDeleteStoryConfirm: "¿Eliminar esta historia?",
	MsgUnknownAuthor:      "Desconocido",
	MsgStatusBanned:       "Baneado",
	MsgLoadUsersFailed:    "No se pudieron cargar los usuarios: %s",
	MsgLoadStatsFailed:    "No se pudieron cargar las estadísticas: %s",
	MsgBanReasonRequired:  "Se necesita un motivo para banear a un usuario",
	MsgInvalidRole:        "Rol desconocido %s",
	MsgImageCounter:       "%d de %d",
	MsgImageAlt:           "Imagen %d",
	MsgAgo:                "hace",
	MsgFromNow:            "dentro de",

	"January": "enero", "February": "febrero", "March": "marzo", "April": "abril",
	"May": "mayo", "June": "junio", "July": "julio", "August": "agosto",
	"September": "septiembre", "October": "octubre", "November": "noviembre", "December": "diciembre",
}

type pluralForms struct {
	one, other string
}

// Counted messages take the count as their first argument.
var plurals = map[string]map[string]pluralForms{
	MsgStoriesFound: {
		"en": {"1 story found", "%d stories found"},
		"es": {"1 historia encontrada", "%d historias encontradas"},
	},
	MsgImageSlotsLeft: {
		"en": {"Only 1 more image can be added", "Only %d more images can be added"},
		"es": {"Solo se puede añadir 1 imagen más", "Solo se pueden añadir %d imágenes más"},
	},
	MsgUploaded: {
		"en": {"Uploaded 1 image", "Uploaded %d images"},
		"es": {"1 imagen subida", "%d imágenes subidas"},
	},
	MsgImageCount: {
		"en": {"1 image", "%d images"},
		"es": {"1 imagen", "%d imágenes"},
	},
}
