package restapi

import "strconv"

// Paths relative to the API root.
const (
	pathSignUp  = "/auth/signup"
	pathSignIn  = "/auth/signin"
	pathCheck   = "/auth/check"
	pathSignOut = "/auth/signout"

	pathChats      = "/secured/chats"
	pathChatCreate = "/secured/chats/create"

	pathUsers        = "/secured/users"
	pathUserUpdate   = "/secured/users/update"
	pathUserDestroy  = "/secured/users/destroy"
	pathRequests     = "/secured/requests"
	pathUserRequests = "/secured/user_requests"
	pathContacts     = "/secured/contacts"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func chatPath(chatID int64) string { return pathChats + "/" + itoa(chatID) }
func chatDestroyPath(chatID int64) string { return chatPath(chatID) + "/destroy" }

func messagesPath(chatID int64) string { return chatPath(chatID) + "/messages" }
func messageCreatePath(chatID int64) string { return messagesPath(chatID) + "/create" }

func messageUpdatePath(chatID, msgID int64) string {
	return messagesPath(chatID) + "/" + itoa(msgID) + "/update"
}

func messageDestroyPath(chatID, msgID int64) string {
	return messagesPath(chatID) + "/" + itoa(msgID) + "/destroy"
}

func userPath(userID int64) string { return pathUsers + "/" + itoa(userID) }
func userRelationsPath(userID int64) string { return userPath(userID) + "/relations" }

func requestPath(reqID int64) string { return pathRequests + "/" + itoa(reqID) }
func requestCreatePath(userID int64) string { return userPath(userID) + "/requests/create" }
func requestApprovePath(reqID int64) string { return requestPath(reqID) + "/approve" }
func requestRejectPath(reqID int64) string { return requestPath(reqID) + "/reject" }
func requestDestroyPath(reqID int64) string { return requestPath(reqID) + "/destroy" }
func contactDestroyPath(cID int64) string { return pathContacts + "/" + itoa(cID) + "/destroy" }
