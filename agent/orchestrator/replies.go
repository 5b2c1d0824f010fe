package orchestrator

// Canned replies. These are observable channel behavior and must stay
// byte-for-byte stable; tests pin them.
const (
	greetingReply = `Hello! I'm your tour assistant. I can help you:
* Get tour details by ID
* Search for tours
* Get tour tracking information

Examples:
* 'Get details for tour 39d11c40-7dba-11f0-a387-8508a0009d76'`

	thanksReply = "You're very welcome! 😊 I'm glad I could help with your tour management needs. If you need anything else related to tours, tracking, or bookings, don't hesitate to ask. Have a great day! 🚗✨"

	helpReply = `I'd be happy to help you with tour details. To provide you with accurate information, please provide a valid Tour ID.

📋 *Tour ID Format*:
* Should be a 36-character UUID format (e.g., 39d11c40-7dba-11f0-a387-8508a0009d76)
* You can find this in your booking confirmation or tour documents

💡 *Where to find your Tour ID*:
* Booking confirmation emails
* Tour management portal
* Your travel documents

Please reply with your Tour ID.`

	needTourIDReply = "Need a tour ID. Example: 39d11c40-7dba-11f0-a387-8508a0009d76"

	needTrackingTourIDReply = "Need a tour ID for tracking. Example: track tour 39d11c40-7dba-11f0-a387-8508a0009d76"

	notUnderstoodReply = "I'm having trouble understanding your request. Please try rephrasing or say 'help' for options."
)
