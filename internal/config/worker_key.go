package config

type WorkerKeyStruct struct {
	PublishNotificationsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PublishNotificationsQueue: "publish_notifications_queue",
}
