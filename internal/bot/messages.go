package bot

import "strings"

const (
	msgHelp = "I copy photos and videos you pick in Google Photos to your Telegram channel.\n\n" +
		"/connect - link your Google account\n" +
		"/setchannel - choose the channel to post to\n" +
		"/picker - pick media and send it\n" +
		"/cancel - stop the running job\n" +
		"/status - show what is linked"

	msgNotAllowed     = "Sorry, this bot is private."
	msgUnknownCommand = "Unknown command. Send /help for the list."
	msgLinkInChannel  = "Post /link CODE in the channel itself, not here."

	msgConnectPrompt = "Open this link to connect your Google account:"
	msgConnectButton = "Connect Google Photos"

	msgNeedConnect = "Please /connect Google first."
	msgNeedChannel = "Please /setchannel first."
	msgCreating    = "Creating a Picker session..."
	msgBusy        = "A picker job is already running. Send /cancel to stop it."
	msgQueueFull   = "Too many jobs are waiting. Try again in a few minutes."
	msgClosing     = "The bot is shutting down. Try again later."
	msgCancelling  = "Cancelling the running job."
	msgNoJob       = "Nothing to cancel."

	msgPickerPrompt = "Open this link on your phone, select items, then tap Done:\n"
	msgPickerButton = "Open Google Photos"

	msgForwardNotChannel = "That message was not forwarded from a channel."

	msgInternalError = "Something went wrong. Please try again."
)

// parseCommand splits "/cmd@botname arg1 arg2" into "/cmd" and its args.
// Text that is not a command yields an empty command.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}

	cmd, _, _ := strings.Cut(fields[0], "@")

	return strings.ToLower(cmd), fields[1:]
}
